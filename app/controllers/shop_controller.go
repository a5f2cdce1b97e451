package controllers

import (
	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/pkg/ctx"
)

type ShopController struct {
	shops *services.ShopService
}

func NewShopController(shops *services.ShopService) *ShopController {
	return &ShopController{shops: shops}
}

func (s *ShopController) Index(c *ctx.Context) {
	list, err := s.shops.List(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(list)
}

// Mine lists the caller's own shops; admins get every shop.
func (s *ShopController) Mine(c *ctx.Context) {
	list, err := s.shops.Owned(c.Context(), c.UserID(), c.Role())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(list)
}

func (s *ShopController) Show(c *ctx.Context) {
	shop, err := s.shops.Get(c.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(shop)
}

func (s *ShopController) Store(c *ctx.Context) {
	var in services.ShopInput
	if !c.BindJSON(&in) {
		return
	}
	shop, err := s.shops.Create(c.Context(), c.UserID(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(shop)
}

func (s *ShopController) Update(c *ctx.Context) {
	var in services.ShopInput
	if !c.BindJSON(&in) {
		return
	}
	shop, err := s.shops.Update(c.Context(), c.UserID(), c.Role(), c.Param("id"), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(shop)
}

func (s *ShopController) Destroy(c *ctx.Context) {
	if err := s.shops.Delete(c.Context(), c.UserID(), c.Role(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.NoContent()
}
