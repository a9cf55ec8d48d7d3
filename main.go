package main

import (
	"tenant-clone/cmd"
)

func main() {
	cmd.Execute()
}
