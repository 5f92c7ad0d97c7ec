package main

import "github.com/platformsec/rbacgate/cmd"

func main() {
	cmd.Execute()
}
