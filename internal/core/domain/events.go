package domain

type LifecycleEvent interface {
	isEvent()
}

func (e TokenCreated) isEvent()   {}
func (e TokenCommitted) isEvent() {}
func (e PeerNotified) isEvent()   {}
func (e TokenRedeemed) isEvent()  {}
func (e TokenForgotten) isEvent() {}

type TokenCreated struct {
	Id        string
	Purpose   Purpose
	Timestamp int64
}

type TokenCommitted struct {
	Id        string
	Outpoint  Outpoint
	Timestamp int64
}

type PeerNotified struct {
	Id        string
	Timestamp int64
}

type TokenRedeemed struct {
	Id        string
	SpentBy   string
	Timestamp int64
}

type TokenForgotten struct {
	Id        string
	SpentBy   string
	Timestamp int64
}
