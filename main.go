package main

import "github.com/Saksham338101/menu-scanner1/cmd"

func main() {
	cmd.Execute()
}
