/**
 * 模型:响应模型
 * @author: amolani
 * @date: 2026.07.15
 * @description: API响应数据模型
 * @func: 通用响应结构体定义
 */
package model

// APIResponse 通用API响应结构
type APIResponse struct {
	Code    int               `json:"code,omitempty"`   // 响应状态码，可选
	Status  string            `json:"status"`           // 响应状态："success" 或 "error"
	Message string            `json:"message"`          // 响应消息
	Data    interface{}       `json:"data,omitempty"`   // 响应数据，可选
	Error   string            `json:"error,omitempty"`  // 错误信息，可选
	Errors  []ValidationError `json:"errors,omitempty"` // 验证错误列表，可选
}

// ValidationError 验证错误结构
type ValidationError struct {
	Field   string `json:"field"`   // 出错字段或token
	Message string `json:"message"` // 错误说明
}

// PaginationResponse 分页响应结构
type PaginationResponse struct {
	Total    int64       `json:"total"`     // 总记录数
	Page     int         `json:"page"`      // 当前页码
	PageSize int         `json:"page_size"` // 每页大小
	Items    interface{} `json:"items"`     // 数据列表
}
