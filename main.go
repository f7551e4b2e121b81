package main

import "github.com/frahmantamala/auth-rbac/cmd"

func main() {
	cmd.Execute()
}
