package main

import "RackPower/internal/rpowerd"

func main() {
	rpowerd.ParseCmdArgs()
}
