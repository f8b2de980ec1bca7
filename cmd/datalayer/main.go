// Command datalayer stores and retrieves schema-described object graphs.
package main

func main() {
	Execute()
}
