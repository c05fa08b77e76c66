package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ZebulonRouseFrantzich/manifold/internal/platform"
)

func printVersion() {
	fmt.Printf("manifold %s\n", Version)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := platform.NewDetector().Detect(ctx)
	if err != nil {
		return
	}
	fmt.Printf("platform: %s\n", info.String())
}
