package server

import (
	"context"
	"fmt"
	"net"
)

// Service Server 管理的网络组件
// Bind 获取套接字，Serve 阻塞直到组件关闭
type Service interface {
	Name() string
	Bind(ctx context.Context) error
	Addr() net.Addr
	Serve() error
	Shutdown(ctx context.Context) error
}

// ServiceError 标明失败的服务和操作
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
