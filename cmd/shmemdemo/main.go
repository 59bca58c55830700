// shmemdemo runs a small multi-PE job inside one process: every PE joins an
// in-process world over the loopback fabric, then the job exercises symmetric
// allocation, a ring of puts, a global sum and a team split.
//
// Usage:
//
//	shmemdemo --pes=8 --team_stride=2
package main

import (
	"flag"
	"fmt"
	"sync"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/goshmem/goshmem/backends"
	_ "github.com/goshmem/goshmem/backends/netib"
	"github.com/goshmem/goshmem/bootstrap/local"
	"github.com/goshmem/goshmem/shmem"
	"github.com/goshmem/goshmem/transport/loopback"
)

var (
	flagPEs    = flag.Int("pes", 8, "number of PEs to run in this process")
	flagStride = flag.Int("team_stride", 2, "stride of the demo team split")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	n := *flagPEs
	if n < 1 {
		klog.Exitf("--pes must be at least 1, got %d", n)
	}

	world := must.M1(local.NewWorld(n))
	fabric := must.M1(loopback.NewFabric(n))

	var wg sync.WaitGroup
	for pe := 0; pe < n; pe++ {
		pe := pe
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPE(world, fabric, pe, n)
		}()
	}
	wg.Wait()
	fmt.Printf("all %d PEs finished\n", n)
}

func runPE(world *local.World, fabric *loopback.Fabric, pe, n int) {
	rt := shmem.Init(shmem.Options{
		Group:     must.M1(world.Join(pe)),
		Transport: must.M1(fabric.Endpoint(pe)),
	})
	defer rt.Finalize()
	ctx := rt.DefaultCtx()

	// Ring: everyone deposits its rank with its right neighbor.
	cell := rt.Malloc(8)
	shmem.P(ctx, cell, int64(pe), (pe+1)%n)
	rt.Barrier()
	left := (pe + n - 1) % n
	if got := shmem.G[int64](ctx, cell, pe); got != int64(left) {
		klog.Exitf("PE %d: ring cell holds %d, want %d", pe, got, left)
	}

	// Global sum of all ranks.
	src := rt.Malloc(8)
	dst := rt.Malloc(8)
	rt.Heap().Int64s(src, 1)[0] = int64(pe)
	must.M(ctx.ReduceInt64s(dst, src, 1, backends.ReduceSum))
	if pe == 0 {
		fmt.Printf("sum of ranks 0..%d = %d\n", n-1, rt.Heap().Int64s(dst, 1)[0])
	}

	// Split off the PEs at every --team_stride ranks and barrier on the team.
	size := (n + *flagStride - 1) / *flagStride
	team := rt.TeamSplitStrided(rt.TeamWorld(), 0, *flagStride, size)
	if team != nil {
		klog.V(1).Infof("PE %d is rank %d of the demo team (%d members)", pe, team.MyPE(), team.NumPEs())
		defer rt.TeamDestroy(team)
	}
	rt.Barrier()

	rt.Free(dst)
	rt.Free(src)
	rt.Free(cell)
	if pe == 0 {
		rt.DumpStats()
	}
}
