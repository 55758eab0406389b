package validator

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	EmailRX = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+\\/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
)

// Validator 存放字段名到错误信息的映射
type Validator struct {
	Errors map[string]string
}

// New 返回一个空的 Validator
func New() *Validator {
	return &Validator{
		Errors: make(map[string]string),
	}
}

// Valid 没有任何错误时返回 true
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError 同一个字段只保留第一条错误
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check 校验未通过时记录错误
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Matches 值匹配正则时返回 true
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// NotBlank 去掉空白后仍有内容
func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxChars 按字符而不是字节计数
func MaxChars(value string, n int) bool {
	return utf8.RuneCountInString(value) <= n
}

// Unique 列表中没有重复值时返回 true
func Unique[T comparable](values []T) bool {
	uniqueValues := make(map[T]bool, len(values))

	for _, value := range values {
		uniqueValues[value] = true
	}

	return len(values) == len(uniqueValues)
}

// In 值在给定列表中时返回 true
func In[T comparable](value T, list ...T) bool {
	for i := range list {
		if value == list[i] {
			return true
		}
	}

	return false
}

// AbsoluteURL 只接受 http/https 的绝对地址
func AbsoluteURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
