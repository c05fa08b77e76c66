package platform_test

import (
	"context"
	"fmt"
	"log"

	"github.com/ZebulonRouseFrantzich/manifold/internal/platform"
)

func ExampleDetector_Detect() {
	info, err := platform.NewDetector().Detect(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("host:", info)
}

func ExampleLocator_LocateInstallRoot() {
	l := &platform.Locator{Root: "/srv/client"}
	root, err := l.LocateInstallRoot(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(root)
	// Output: /srv/client
}

func ExampleInfo_String() {
	info := &platform.Info{OS: "linux", Arch: "amd64", Platform: "ubuntu", Version: "22.04"}
	fmt.Println(info)
	// Output: linux/amd64 (ubuntu 22.04)
}
