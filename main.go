package main

import (
	"github.com/BioHazard786/Warpcast/cmd"
)

func main() {
	cmd.Execute()
}
