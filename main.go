package main

import (
	"StemFM/cmd"
)

func main() {
	cmd.Execute()
}
