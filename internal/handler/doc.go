// Package handler 按业务划分的 HTTP Handler，各子包对应一组路由。
//
// 接口文档由 swag 生成：swag init -g internal/handler/doc.go -o docs
//
// @title 营地预订服务 API
// @version 1.0
// @description 营位定价、报价与预订
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey InternalToken
// @in header
// @name X-Internal-Token
package handler
