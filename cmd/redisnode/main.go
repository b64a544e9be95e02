// redisnode is a small CLI wrapping pkg/redisnode, mainly useful for
// smoke-testing a node and its admin surface from the shell.
package main

import "github.com/lumadb/redisnode/cmd/redisnode/cmd"

func main() {
	cmd.Execute()
}
