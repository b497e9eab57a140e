package main

import "github.com/example/foodsched/cmd"

func main() {
	cmd.Execute()
}
