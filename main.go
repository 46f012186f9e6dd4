package main

import "askbot/cmd"

func main() {
	cmd.Execute()
}
