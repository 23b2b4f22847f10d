package main

import "github.com/kfreiman/careerlink/cmd"

func main() {
	cmd.Execute()
}
