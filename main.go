package main

import "konoha/cmd"

func main() {
	cmd.Execute()
}
