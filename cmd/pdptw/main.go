// Command pdptw solves pickup and delivery problems with time windows from
// the command line or as an HTTP service.
package main

func main() {
	Execute()
}
