// package services talks to the recap REST API.
//
// [APIService] injects the session bearer token, limits the request rate and unwraps the
// {code, message, data} envelope every endpoint responds with.
package services
