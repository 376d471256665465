package main

import "github.com/ValentinKolb/kvcopy/cmd"

func main() {
	cmd.Execute()
}
