package main

import "github.com/Krugou/aurorawatcher/cmd"

func main() {
	cmd.Execute()
}
