package main

import (
	"github.com/luminagoods/site/src/admintools"
	"github.com/luminagoods/site/src/migration"
	"github.com/luminagoods/site/src/s3dev"
	"github.com/luminagoods/site/src/website"
)

func main() {
	website.WebsiteCommand.AddCommand(migration.Commands()...)
	website.WebsiteCommand.AddCommand(admintools.Command())
	website.WebsiteCommand.AddCommand(s3dev.Command())
	website.WebsiteCommand.Execute()
}
