package model

// RemovalResult 一次背景去除的结果，也是缓存中保存的结构
type RemovalResult struct {
	MD5         string `json:"md5"`
	Method      string `json:"method"`
	Strategy    string `json:"strategy"` // remote, local
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Image       []byte `json:"image"`
	Timestamp   int64  `json:"timestamp"`
}

// RemovalData 接口返回的数据部分
type RemovalData struct {
	DataURI     string `json:"data_uri"`
	MD5         string `json:"md5"`
	Method      string `json:"method"`
	Strategy    string `json:"strategy"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Cached      bool   `json:"cached"`
}

// RemovalResponse 背景去除响应
type RemovalResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *RemovalData `json:"data"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
