package main

import "github.com/RyanBlaney/harmonic-analyzer/cmd"

func main() {
	cmd.Execute()
}
