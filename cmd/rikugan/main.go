// Rikugan is a transformer activation visualization backend. It loads
// a model capability, captures residual-stream activations during
// generation, and streams normalized activation slices to clients over
// WebSocket.
package main

func main() {
	Execute()
}
