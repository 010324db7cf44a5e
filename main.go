package main

import "github.com/hdaudio/avengine/cmd"

func main() {
	cmd.Execute()
}
