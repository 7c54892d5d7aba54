package main

// @title                      Facility Ops API
// @version                    1.0
// @description                Confined-space work orders, survey reports and user management.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	Execute()
}
