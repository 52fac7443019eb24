package ecsmem_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hupe1980/ecsmem"
	"github.com/hupe1980/ecsmem/component"
	"github.com/hupe1980/ecsmem/pool"
)

type Position struct {
	X, Y, Z float32
}

type Health struct {
	Current, Max int32
}

// Example demonstrates allocating, reading and removing records.
func Example() {
	store, err := ecsmem.New(ecsmem.WithCapacity(1<<20), ecsmem.WithRegistry(component.NewRegistry()))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	positions, err := ecsmem.NewPool[Position](store)
	if err != nil {
		log.Fatal(err)
	}

	h, loc, err := positions.Allocate(Position{X: 1, Y: 2, Z: 3})
	if err != nil {
		log.Fatal(err)
	}

	p, _ := positions.Get(h)
	p.X += 10

	v, _ := positions.Value(h)
	fmt.Println(h, loc, v)

	positions.Remove(h)
	_, ok := positions.Get(h)
	fmt.Println("live after remove:", ok)
	// Output:
	// 0@0 (0, 0) {11 2 3}
	// live after remove: false
}

// Example_compaction demonstrates patching cached locations after compaction.
func Example_compaction() {
	store, err := ecsmem.New(ecsmem.WithCapacity(1<<20), ecsmem.WithRegistry(component.NewRegistry()))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	health, err := ecsmem.NewPool[Health](store, pool.WithComponentsPerChunk(4))
	if err != nil {
		log.Fatal(err)
	}

	var last ecsmem.Location
	for i := range 10 {
		_, last, _ = health.Allocate(Health{Current: int32(i), Max: 100})
	}
	fmt.Println("chunks:", health.ChunkCount(), "last:", last)

	res, err := health.Compact(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("chunks:", health.ChunkCount(), "last:", res.Relocate(last))
	// Output:
	// chunks: 2 last: (1, 1)
	// chunks: 1 last: (0, 9)
}

// Example_capacity demonstrates detecting capacity exhaustion.
func Example_capacity() {
	store, err := ecsmem.New(ecsmem.WithCapacity(1<<20), ecsmem.WithRegistry(component.NewRegistry()))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	positions, err := ecsmem.NewPool[Position](store, pool.WithComponentsPerChunk(2), pool.WithMaxChunks(1))
	if err != nil {
		log.Fatal(err)
	}

	for {
		if _, _, err := positions.Allocate(Position{}); err != nil {
			fmt.Println("full:", errors.Is(err, ecsmem.ErrNoCapacity), "live:", positions.Len())
			break
		}
	}
	// Output: full: true live: 4
}
