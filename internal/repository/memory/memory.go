package memory

import (
	"secureflow/internal/repository"
)

var (
	_ repository.HistoryRepository = (*HistoryRepository)(nil)
	_ repository.UserRepository    = (*UserRepository)(nil)
)
