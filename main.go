package main

import "tracklist/cmd"

func main() {
	cmd.Execute()
}
