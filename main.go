package main

import (
	cmd "github.com/gradle-enterprise-insights/build-report/cmd/gebr"
	"github.com/gradle-enterprise-insights/build-report/data"
	"github.com/gradle-enterprise-insights/build-report/internal/assets"
)

func main() {
	assets.UpdateData(&data.FS)
	cmd.Execute()
}
