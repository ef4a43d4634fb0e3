package main

import "github.com/dbsmedya/athenastats/cmd/athenastats/cmd"

func main() {
	cmd.Execute()
}
