package main

import (
	"os"

	ssechatcmder "github.com/papercomputeco/ssechat/cmd/ssechat"
)

func main() {
	cmd := ssechatcmder.NewSsechatCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
