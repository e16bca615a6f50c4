package utils

import (
	"crypto/md5"
	"encoding/hex"
	"io"
)

// CalMD5 计算数据流的 MD5 值
func CalMD5(r io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	// 将字节数组转换为十六进制字符串
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// MD5Hex 字节数组形式的摘要转为十六进制字符串
func MD5Hex(sum [16]byte) string {
	return hex.EncodeToString(sum[:])
}
