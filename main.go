package main

import "github.com/mj1618/findclose/cmd"

func main() {
	cmd.Execute()
}
