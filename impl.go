package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"crafterDirectory/api"
	"crafterDirectory/crafter"
	"crafterDirectory/services/directory"
	"crafterDirectory/services/warcraft"
	"crafterDirectory/validator"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Server struct {
	Directory *directory.Store
}

func NewServer(store *directory.Store) Server {
	return Server{
		Directory: store,
	}
}

// Register mounts the read routes and, behind the admin token, the write routes.
func (s Server) Register(r gin.IRouter, adminToken string) {
	r.GET("/ping", s.Ping)
	r.GET("/status", s.Status)
	r.GET("/items", s.Items)
	r.GET("/items/:name", s.Item)
	r.GET("/items/:name/crafters", s.Crafters)
	r.GET("/characters/:server/:name", s.Character)
	r.GET("/owners/:owner/characters", s.OwnedCharacters)
	r.GET("/professions", s.Professions)
	r.GET("/professions/:profession/characters", s.ProfessionCharacters)
	r.GET("/roster", s.Roster)
	r.GET("/recipes/:id/rank", s.Rank)

	w := r.Group("/", validator.RequireToken(adminToken))
	w.POST("/owners/:owner/characters", s.AddCharacter)
	w.POST("/characters/:server/:name/refresh", s.RefreshCharacter)
	w.DELETE("/characters/:server/:name", s.RemoveCharacter)
	w.PUT("/characters/:server/:name/professions/:profession/summary", s.SetSummary)
	w.POST("/rebuild", s.Rebuild)
}

func (s Server) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, api.Pong{Ping: "pong"})
}

func (s Server) Status(c *gin.Context) {
	c.JSON(http.StatusOK, api.TransformStatus(s.Directory.Status(), time.Now()))
}

func (s Server) Items(c *gin.Context) {
	c.JSON(http.StatusOK, s.Directory.Items())
}

func (s Server) Item(c *gin.Context) {
	item, err := s.Directory.Item(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.TransformItem(item))
}

func (s Server) Crafters(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("ranks"))
	candidates, err := s.Directory.Crafters(c.Request.Context(), c.Param("name"), refresh)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.TransformCandidates(candidates))
}

func (s Server) Character(c *gin.Context) {
	character, ok := s.character(c)
	if !ok {
		return
	}
	data, err := s.Directory.Character(character)
	if err != nil {
		respondError(c, err)
		return
	}
	details := api.TransformCharacterDetails(character, data)
	details.GuildMember = s.Directory.IsGuildMember(character.Name)
	c.JSON(http.StatusOK, details)
}

func (s Server) OwnedCharacters(c *gin.Context) {
	c.JSON(http.StatusOK, api.TransformCharacters(s.Directory.CharactersOf(c.Param("owner"))))
}

func (s Server) Professions(c *gin.Context) {
	professions := crafter.Professions()
	result := make([]api.ProfessionCount, 0, len(professions))
	for _, p := range professions {
		result = append(result, api.ProfessionCount{
			Name:       string(p),
			Characters: len(s.Directory.WithProfession(p)),
		})
	}
	c.JSON(http.StatusOK, result)
}

func (s Server) Roster(c *gin.Context) {
	c.JSON(http.StatusOK, s.Directory.Roster())
}

func (s Server) ProfessionCharacters(c *gin.Context) {
	profession, ok := crafter.ParseProfession(c.Param("profession"))
	if !ok {
		respondError(c, crafter.ErrProfessionNotFound)
		return
	}
	c.JSON(http.StatusOK, api.TransformCharacters(s.Directory.WithProfession(profession)))
}

func (s Server) Rank(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.Error{Error: "recipe id must be a positive number"})
		return
	}
	rank, err := s.Directory.GetRank(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.Rank{RecipeID: id, Rank: rank})
}

func (s Server) AddCharacter(c *gin.Context) {
	var body api.AddCharacterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}
	character, err := s.Directory.NewCharacter(body.Name, body.Server)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.Directory.AddCharacter(c.Request.Context(), c.Param("owner"), character); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.TransformCharacter(character))
}

func (s Server) RefreshCharacter(c *gin.Context) {
	character, ok := s.character(c)
	if !ok {
		return
	}
	if err := s.Directory.RefreshCharacter(c.Request.Context(), character); err != nil {
		respondError(c, err)
		return
	}
	s.Character(c)
}

func (s Server) RemoveCharacter(c *gin.Context) {
	character, ok := s.character(c)
	if !ok {
		return
	}
	if err := s.Directory.RemoveCharacter(c.Request.Context(), character); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s Server) SetSummary(c *gin.Context) {
	character, ok := s.character(c)
	if !ok {
		return
	}
	profession, ok := crafter.ParseProfession(c.Param("profession"))
	if !ok {
		respondError(c, crafter.ErrProfessionNotFound)
		return
	}
	var body api.SummaryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}
	if err := s.Directory.SetSummary(c.Request.Context(), character, profession, body.Summary); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s Server) Rebuild(c *gin.Context) {
	if err := s.Directory.RebuildAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	s.Status(c)
}

// character reads the character from the path, answering the request itself
// when the server is unknown.
func (s Server) character(c *gin.Context) (crafter.Character, bool) {
	character, err := s.Directory.NewCharacter(c.Param("name"), c.Param("server"))
	if err != nil {
		respondError(c, err)
		return crafter.Character{}, false
	}
	return character, true
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, api.Error{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, crafter.ErrCharacterNotFound),
		errors.Is(err, crafter.ErrNotRegistered),
		errors.Is(err, crafter.ErrItemNotFound),
		errors.Is(err, crafter.ErrServerNotFound),
		errors.Is(err, crafter.ErrProfessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, crafter.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, crafter.ErrInvalidName),
		errors.Is(err, crafter.ErrInvalidOwner):
		return http.StatusBadRequest
	case errors.Is(err, directory.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, warcraft.ErrServiceDown),
		errors.Is(err, crafter.ErrFormat):
		return http.StatusBadGateway
	default:
		var authErr warcraft.AuthError
		if errors.As(err, &authErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
