package main

import "fleetd/cmd"

func main() {
	cmd.Execute()
}
