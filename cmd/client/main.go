package main

import "gymkeeper/cmd/client/cmd"

func main() {
	cmd.Execute()
}
