package service

// platformFee считает комиссию платформы в базисных пунктах от суммы.
func platformFee(amount int64, bps int) int64 {
	return amount * int64(bps) / 10000
}

// arbitrationSplit — результат раздела эскроу при арбитраже.
type arbitrationSplit struct {
	ArbFee      int64
	PlatformFee int64
	ClientShare int64
	AgentShare  int64
}

// splitEscrow делит нераспределённый остаток эскроу: сначала комиссии
// арбитра и платформы, затем раздел clientPercent / (100 − clientPercent);
// копейка округления достаётся исполнителю. Комиссии не могут съесть
// больше самого остатка.
func splitEscrow(distributable int64, clientPercent, arbFeePercent, platformBps int) arbitrationSplit {
	var s arbitrationSplit
	if distributable <= 0 {
		return s
	}

	s.ArbFee = distributable * int64(arbFeePercent) / 100
	s.PlatformFee = platformFee(distributable, platformBps)
	if s.ArbFee+s.PlatformFee > distributable {
		s.PlatformFee = distributable - s.ArbFee
	}

	pool := distributable - s.ArbFee - s.PlatformFee
	s.ClientShare = pool * int64(clientPercent) / 100
	s.AgentShare = pool - s.ClientShare
	return s
}
