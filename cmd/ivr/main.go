// Command ivr runs the train enquiry IVR simulator.
package main

func main() {
	Execute()
}
