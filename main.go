package main

import "github.com/Layr-Labs/questboard/cmd"

func main() {
	cmd.Execute()
}
