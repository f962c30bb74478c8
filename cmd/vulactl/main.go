// Command vulactl is the control-plane CLI for a running vula-organize
// daemon: process descriptors, edit preferences, and inspect peers over
// its HTTP/JSON RPC surface.
package main

func main() {
	Execute()
}
