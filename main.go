package main

import "github.com/mselser95/vault-factory/cmd"

func main() {
	cmd.Execute()
}
