// Command product-crawler crawls a retail domain for product records.
package main

import "github.com/JakeFAU/product-crawler/cmd"

func main() {
	cmd.Execute()
}
