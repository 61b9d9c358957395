package permission

// 仅测试使用：暴露包内未导出标识符给外部测试包
var ProjectPathOf = projectPathOf
