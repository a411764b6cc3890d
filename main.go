package main

import (
	"github.com/ColonelBlimp/lightmorse/cmd"
	"github.com/ColonelBlimp/lightmorse/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
