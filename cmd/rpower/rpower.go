package main

import "RackPower/internal/rpower"

func main() {
	rpower.ParseCmdArgs()
}
