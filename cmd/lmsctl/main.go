// lmsctl 运维命令：重算学习进度、补发证书文件、探测视频时长
package main

import (
	"context"
	"course_lms_backend/internal/util"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand(newCommandContext())
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		// 2 表示请求本身不成立，重试无意义
		if util.IsDomainError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
