package wal

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileModePrivate rw------- (只有擁有者可讀寫)
const FileModePrivate fs.FileMode = 0600

// WAL 以 JSON Lines 格式記錄的 Write-Ahead Log
type WAL struct {
	file *os.File
	mu   sync.Mutex
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式 (ReadAll 需要讀)
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆資料並刷入硬碟，回傳 nil 代表資料已落地
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 從頭讀取所有資料，每筆交給 callback
//
// 最後一筆若只寫了一半 (程序在寫入途中被中止)，會把檔案截斷到最後一筆完整資料，
// 之後的 Write 接續在完整資料後面。
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var offset int64
	for {
		var raw json.RawMessage
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return w.truncateAfter(offset)
		}
		if err != nil {
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
		offset = decoder.InputOffset()
	}
}

// truncateAfter 截斷到 offset，若 offset 位置是完整資料的換行符號則一併保留
func (w *WAL) truncateAfter(offset int64) error {
	newline := make([]byte, 1)
	n, err := w.file.ReadAt(newline, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n == 1 && newline[0] == '\n' {
		offset++
	}
	return w.file.Truncate(offset)
}
