package dal

import (
	"cex-ledger/biz/dal/kafka"
	"cex-ledger/biz/dal/pg"
	"cex-ledger/biz/dal/redis"
)

func Init() {
	pg.Init()
	redis.Init()
	kafka.Init()
}
