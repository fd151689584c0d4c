package main

import "github.com/ValentinKolb/dkvs/cmd"

func main() {
	cmd.Execute()
}
