package main

import (
	"github.com/calebmorse/ordergate/internal/process"
)

func main() {
	process.Run()
}
