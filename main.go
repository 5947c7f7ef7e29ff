package main

import "github.com/ValentinKolb/dFeed/cmd"

func main() {
	cmd.Execute()
}
